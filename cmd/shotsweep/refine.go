package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MacJediWizard/shotsweep/internal/selection"
)

const refineHelp = "commands: <num> toggle  n/p page  /text filter  c clear filter  a select page  A select filtered  d deselect all  done  q quit"

// refineInteractive narrows an acquired candidate set through a prompt
// loop before anything destructive runs. Quitting (or EOF) cancels the
// whole selection; done confirms whatever is marked.
func refineInteractive(in io.Reader, out io.Writer, candidates []selection.Candidate, pageSize int) *selection.Result {
	ref := selection.NewRefinement(candidates)
	ref.SetPageSize(pageSize)

	scanner := bufio.NewScanner(in)
	for {
		renderRefinement(out, ref)
		fmt.Fprint(out, "refine> ")
		if !scanner.Scan() {
			return &selection.Result{Cancelled: true}
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "q" || line == "quit":
			return &selection.Result{Cancelled: true}
		case line == "done":
			return &selection.Result{Candidates: ref.Selected()}
		case line == "n":
			ref.NextPage()
		case line == "p":
			ref.PrevPage()
		case line == "a":
			ref.SelectPage()
		case line == "A":
			ref.SelectAllFiltered()
		case line == "d":
			ref.DeselectAll()
		case line == "c":
			ref.ClearFilter()
		case strings.HasPrefix(line, "/"):
			ref.SetFilter(strings.TrimPrefix(line, "/"))
		default:
			n, err := strconv.Atoi(line)
			if err != nil {
				fmt.Fprintln(out, refineHelp)
				continue
			}
			page := ref.Page()
			if n < 1 || n > len(page) {
				fmt.Fprintf(out, "no entry %d on this page\n", n)
				continue
			}
			ref.Toggle(page[n-1].ID)
		}
	}
}

func renderRefinement(out io.Writer, ref *selection.Refinement) {
	page := ref.Page()
	if len(page) == 0 {
		fmt.Fprintln(out, "\nNo candidates match the current filter.")
		return
	}

	fmt.Fprintf(out, "\nPage %d/%d - %d selected\n", ref.PageIndex()+1, ref.PageCount(), len(ref.SelectedIDs()))
	for i, c := range page {
		mark := " "
		if ref.IsSelected(c.ID) {
			mark = "*"
		}
		fmt.Fprintf(out, "%3d [%s] %-40s status=%s owner=%s\n", i+1, mark, c.Label, c.Meta["status"], c.Meta["owner"])
	}
}
