package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"media-service/ddd/domain/vo"
	"media-service/internal/resource"
	"media-service/pkg/config"
)

// presign 输出对象的限时读取地址，用于排查存储和签名配置
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config yaml; empty uses defaults and environment")
	expires := flag.Duration("expires", time.Hour, "URL lifetime, clamped to [1s, 7d]")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: presign [-config path] [-expires 1h] <key-or-url>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	store, err := resource.OpenStorage(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	key := vo.NormalizeKey(flag.Arg(0), cfg.Storage.Bucket, store.PathPrefixes()...)
	u, err := store.Gateway().PresignedGet(context.Background(), key, *expires)
	if err != nil {
		fmt.Fprintf(os.Stderr, "presign %s: %v\n", key, err)
		os.Exit(1)
	}
	fmt.Println(u)
}
