// webhookctl 管理网关侧登记的回调地址
//
//	webhookctl register [-url https://shop.example/api/webhooks/kira-pay]
//	webhookctl get
//	webhookctl delete
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	admin := service.NewWebhookAdminService(gateway.NewClient(cfg.Gateway), cfg.Webhook, cfg.App)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var res *gateway.WebhookResult
	switch os.Args[1] {
	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		url := fs.String("url", "", "callback url (default <app.public_url>/api/webhooks/kira-pay)")
		_ = fs.Parse(os.Args[2:])
		res, err = admin.Register(ctx, *url)
	case "get":
		res, err = admin.Get(ctx)
	case "delete":
		res, err = admin.Delete(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: webhookctl register [-url URL] | get | delete")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "webhookctl:", err)
	os.Exit(1)
}
