package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"git.home.luguber.info/inful/pkgrepo/internal/api"
	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
)

// ScanCmd implements the 'scan' command.
type ScanCmd struct {
	Dir  string `short:"d" help:"Package directory (overrides repository.directory)"`
	JSON bool   `help:"Print the registry as JSON"`
}

// ScanReport is the JSON output of 'scan'.
type ScanReport struct {
	Repository string            `json:"repository"`
	Directory  string            `json:"directory"`
	Packages   []api.PackageView `json:"packages"`
	Auxiliary  []string          `json:"auxiliary"`
}

func (s *ScanCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g, s.Dir)
	if err != nil {
		return err
	}
	repo, err := newRepository(context.Background(), cfg, g.Logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Shutdown() }()

	res, err := repo.Load(context.Background())
	if err != nil {
		return err
	}
	g.Logger.Debug("Scan complete",
		logfields.Repository(repo.Name()),
		logfields.Count(len(res.Added)),
	)

	report := ScanReport{
		Repository: repo.Name(),
		Directory:  repo.Directory(),
		Packages:   packageViews(repo.FindAll()),
		Auxiliary:  repo.Auxiliary(),
	}
	if s.JSON {
		enc := json.NewEncoder(g.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(g.Stdout, report)
}

func packageViews(all []descriptor.Descriptor) []api.PackageView {
	views := make([]api.PackageView, 0, len(all))
	for _, d := range all {
		views = append(views, api.NewPackageView(d))
	}
	return views
}

func printReport(w io.Writer, report ScanReport) error {
	if _, err := fmt.Fprintf(w, "Repository %s (%s)\n", report.Repository, report.Directory); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tVERSION\tLOCATION")
	for _, p := range report.Packages {
		version := p.Version
		if version == "" {
			version = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, version, p.Location)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(report.Auxiliary) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w, "\nAuxiliary files:")
	for _, loc := range report.Auxiliary {
		_, _ = fmt.Fprintf(w, "  %s\n", loc)
	}
	return nil
}
