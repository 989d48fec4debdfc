package scan

import (
	"context"
	"net"
	"sync"
)

// portJob 每个端口一个任务,index是端口在端口列表中的位置,结果只写入results[index]
type portJob struct {
	ctx     context.Context
	ip      net.IP
	index   int
	port    int
	results []Record
	wg      *sync.WaitGroup
}
