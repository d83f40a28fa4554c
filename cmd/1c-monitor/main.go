// -----------------------------------------------------------------------
// 1C Zabbix Monitor - Main Entry Point
// -----------------------------------------------------------------------
//
// Package main is the binary Zabbix runs once per check, for example from
// a UserParameter:
//
//	UserParameter=1c.metric[*],/usr/local/bin/1c-monitor --metric $1 --format $2
//
// It prints one value to stdout and exits with the code returned by app.Run.
//
// -----------------------------------------------------------------------

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/afreidah/1c-zabbix-monitor/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}
