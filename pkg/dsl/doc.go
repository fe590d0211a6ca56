/*
Package dsl provides a Go DSL for programmatically constructing page graphs.

It allows developers to define wizards using a type-safe, fluent builder
instead of JSON, YAML, Markdown or HCL files. This is particularly useful for
dynamic graph generation, unit testing, and leveraging IDE autocompletion.

Example usage:

	b := dsl.New()

	b.Add("welcome").
		Title("Install $product").
		Input("root", "root", "Install folder").Default("/opt/$product").Required()

	b.Add("mode").
		Branch("mode").
		Choice("mode", "Installation type", "full", "custom").
		Case("full", "download").
		Case("custom", "components")

	b.Add("components").
		Tags("formats", "formats", true, "VST3", "AU", "AAX").Required()

	b.Add("download").
		Download("fetch", "https://example.com/$product.zip", "$root/$product.zip").Async().Required()

	b.Add("done").Terminal()

	g, err := b.Build()
*/
package dsl
