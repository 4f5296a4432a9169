// expopulse is the expo booth conversation analytics service.
package main

import (
	"github.com/xowlabs/expopulse/cmd"
)

func main() {
	cmd.Execute()
}
