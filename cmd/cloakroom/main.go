// Command cloakroom はクロークルーム受付サービスを起動する。
//
// サブコマンド: serve（既定）, worker, migrate, create-admin, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/zebramusic/cloackroom-app-sub001/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cloakroom: %v\n", err)
		os.Exit(1)
	}
}
