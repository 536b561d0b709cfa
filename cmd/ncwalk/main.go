// Diagnostic tool for dumping the metadata tree of a file
package main

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-netcdf4/netcdf"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/ncwalk/main.go <file.nc>")
		os.Exit(1)
	}

	filename := os.Args[1]
	fmt.Printf("=== %s ===\n\n", filename)

	f, err := netcdf.Open(filename, netcdf.WithReadOnly())
	if err != nil {
		fmt.Printf("ERROR: failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if f.Classic() {
		fmt.Println("classic model file")
		fmt.Println()
	}

	walkGroup(f.Root(), "")
}

func walkGroup(g *netcdf.Group, indent string) {
	fmt.Printf("%sgroup %q:\n", indent, g.Path())

	for _, t := range g.Types() {
		fmt.Printf("%s  type %q (id %d, size %d)\n", indent, t.Name(), t.ID(), t.Size())
	}

	for _, d := range g.Dims() {
		suffix := ""
		if d.IsUnlimited() {
			suffix = " (unlimited)"
		}
		fmt.Printf("%s  dim %q = %d%s [id %d]\n", indent, d.Name(), d.Len(), suffix, d.ID())
	}

	for _, v := range g.Vars() {
		fmt.Printf("%s  var %q %s%v\n", indent, v.Name(), v.Type().Name(), dimNames(v))
		if chunks := v.Chunking(); chunks != nil {
			fmt.Printf("%s    chunks: %v\n", indent, chunks)
		}
		if on, level := v.Deflate(); on {
			fmt.Printf("%s    deflate level %d\n", indent, level)
		}
		atts, err := v.Attrs()
		if err != nil {
			fmt.Printf("%s    ERROR reading attrs: %v\n", indent, err)
			continue
		}
		printAttrs(atts, indent+"    ")
	}

	atts, err := g.Attrs()
	if err != nil {
		fmt.Printf("%s  ERROR reading attrs: %v\n", indent, err)
	} else {
		printAttrs(atts, indent+"  ")
	}

	for _, sub := range g.Groups() {
		walkGroup(sub, indent+"  ")
	}
}

func dimNames(v *netcdf.Variable) []string {
	dims := v.Dims()
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name()
	}
	return names
}

func printAttrs(atts []*netcdf.Attribute, indent string) {
	for _, a := range atts {
		val, err := a.Value()
		if err != nil {
			fmt.Printf("%s:%s = <unreadable: %v>\n", indent, a.Name(), err)
			continue
		}
		fmt.Printf("%s:%s = %v\n", indent, a.Name(), val)
	}
}
