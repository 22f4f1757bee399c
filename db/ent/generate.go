//go:generate go run generate.go

package main

import (
	"log"

	"entgo.io/ent/entc"
	"entgo.io/ent/entc/gen"
)

func main() {
	err := entc.Generate(
		"./schema",
		&gen.Config{
			Target:  "../../gen/ent",
			Package: "github.com/adaeze-umeh/traffic-analyzer/gen/ent",
		},
	)
	if err != nil {
		log.Fatal(err)
	}
}
