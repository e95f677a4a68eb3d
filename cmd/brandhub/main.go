// Command brandhub はマーケティングサイトとブログのバックエンドを起動する。
//
// 使い方:
//
//	brandhub [serve|migrate|backup|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/brandhub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
