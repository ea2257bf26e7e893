// sitelapse screenshots a live site preview once per commit or profile.
package main

import (
	"os"

	"github.com/steveyegge/sitelapse/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
