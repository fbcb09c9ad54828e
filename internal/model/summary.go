package model

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/manifold-ml/manifold/internal/nn"
)

// Summary writes a per-layer parameter table to w.
func (m *Model) Summary(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "LAYER", "PARAMS", "TRAINABLE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")

	var total, trainable int
	for i, layer := range m.net.Layers() {
		layerTotal, layerTrainable := countParams(layer)
		total += layerTotal
		trainable += layerTrainable
		table.Append([]string{
			fmt.Sprintf("%d", i),
			describe(layer),
			fmt.Sprintf("%d", layerTotal),
			fmt.Sprintf("%d", layerTrainable),
		})
	}
	table.Render()
	fmt.Fprintf(w, "\nTotal params: %d (%d trainable)\n", total, trainable)
}

func countParams(layer nn.Layer) (total, trainable int) {
	for _, p := range layer.Parameters() {
		n := p.Tensor().NumElements()
		total += n
		if p.Trainable() {
			trainable += n
		}
	}
	return total, trainable
}

func describe(layer nn.Layer) string {
	if d, ok := layer.(interface{ Describe() string }); ok {
		return d.Describe()
	}
	return layer.Name()
}
