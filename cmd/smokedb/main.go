// Command smokedb serves and queries a smokedb database.
//
//	smokedb serve --driver badger --path ./data --stores users,orders
//	smokedb insert users people.json
//	smokedb query users --where team:x --order -age --take 10
package main

import (
	"fmt"
	"os"

	_ "github.com/kbukum/smokedb/store/badgerdb"
	_ "github.com/kbukum/smokedb/store/memory"
	_ "github.com/kbukum/smokedb/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
