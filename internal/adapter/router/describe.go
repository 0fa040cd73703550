package router

import (
	"fmt"

	"github.com/pterm/pterm"
)

// Describe pretty-prints the router's registered routes as a table, in
// registration order — a debug aid for confirming what a composed router
// actually dispatches to before it starts serving.
func (rt *Router) Describe() {
	if len(rt.routes) == 0 {
		return
	}

	tableData := [][]string{{"METHOD", "PATTERN"}}
	for _, rte := range rt.routes {
		method := rte.method
		if method == "" {
			method = "*"
		}
		tableData = append(tableData, []string{method, rte.pattern})
	}

	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	if err != nil {
		return
	}
	fmt.Print(rendered)
}
