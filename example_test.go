package multipage_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/pkg/dsl"
)

// ExampleNew_memory builds a branching wizard in code and walks it.
func ExampleNew_memory() {
	b := dsl.New()
	b.Add("mode").
		Choice("mode", "Installation type", "full", "custom").
		Branch("mode").
		Case("full", "done").
		Case("custom", "components")
	b.Add("components").
		Tags("formats", "formats", true, "VST3", "AU").Required().
		Go("done")
	b.Add("done").Terminal()

	g, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	eng, err := multipage.New("", multipage.WithGraph(g))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	c, err := eng.Start(ctx, "example")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(c.Current())

	_ = c.SetValue(ctx, "mode", "custom")
	_ = c.Advance(ctx)
	fmt.Println(c.Current())

	_ = c.SetValue(ctx, "formats", []string{"VST3"})
	_ = c.Advance(ctx)
	fmt.Println(c.Current())

	_ = c.Advance(ctx)
	fmt.Println(c.Status())
	// Output:
	// mode
	// components
	// done
	// finished
}
