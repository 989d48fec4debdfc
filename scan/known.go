package scan

// knownPorts 常见TCP服务端口及其IANA服务名,只是IANA表的一个子集,端口列表以本文件为准
// 服务名可以用 tools/update.go 从IANA重新获取
// data from https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv
var knownPorts = map[int]string{
	1:     "tcpmux",
	7:     "echo",
	9:     "discard",
	13:    "daytime",
	17:    "qotd",
	19:    "chargen",
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	37:    "time",
	42:    "nameserver",
	43:    "nicname",
	49:    "tacacs",
	53:    "domain",
	67:    "bootps",
	69:    "tftp",
	70:    "gopher",
	79:    "finger",
	80:    "http",
	81:    "hosts2-ns",
	88:    "kerberos",
	102:   "iso-tsap",
	110:   "pop3",
	111:   "sunrpc",
	113:   "ident",
	119:   "nntp",
	123:   "ntp",
	135:   "epmap",
	137:   "netbios-ns",
	138:   "netbios-dgm",
	139:   "netbios-ssn",
	143:   "imap",
	161:   "snmp",
	162:   "snmptrap",
	179:   "bgp",
	194:   "irc",
	199:   "smux",
	389:   "ldap",
	427:   "svrloc",
	443:   "https",
	444:   "snpp",
	445:   "microsoft-ds",
	465:   "submissions",
	497:   "retrospect",
	500:   "isakmp",
	512:   "exec",
	513:   "login",
	514:   "shell",
	515:   "printer",
	543:   "klogin",
	544:   "kshell",
	548:   "afpovertcp",
	554:   "rtsp",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	646:   "ldp",
	873:   "rsync",
	902:   "ideafarm-door",
	990:   "ftps",
	993:   "imaps",
	995:   "pop3s",
	1025:  "blackjack",
	1080:  "socks",
	1194:  "openvpn",
	1433:  "ms-sql-s",
	1434:  "ms-sql-m",
	1521:  "ncube-lm",
	1723:  "pptp",
	1883:  "mqtt",
	2049:  "nfs",
	2121:  "scientia-ssdb",
	2181:  "eforward",
	2375:  "docker",
	2376:  "docker-s",
	3000:  "hbci",
	3128:  "ndl-aas",
	3260:  "iscsi-target",
	3268:  "msft-gc",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	3690:  "svn",
	4369:  "epmd",
	5000:  "commplex-main",
	5060:  "sip",
	5222:  "xmpp-client",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "rfb",
	5984:  "couchdb",
	6000:  "x11",
	6443:  "sun-sr-https",
	6665:  "ircu",
	6697:  "ircs-u",
	8000:  "irdmi",
	8008:  "http-alt",
	8080:  "http-alt",
	8081:  "sunproxyadmin",
	8443:  "pcsync-https",
	8888:  "ddi-tcp-1",
	9000:  "cslistener",
	9090:  "websm",
	9092:  "xmlipcregsvc",
	9100:  "pdl-datastream",
	9200:  "wap-wsp",
	9418:  "git",
	10000: "ndmp",
	11211: "memcache",
	27017: "mongodb",
}
