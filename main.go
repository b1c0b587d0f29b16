// mssbctl 透過序列埠控制與測試 MSSB SIM 切換矩陣。
package main

import (
	"fmt"
	"os"
)

// 版本資訊 (由 ldflags 注入)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mssbctl: %v\n", err)
		os.Exit(1)
	}
}
