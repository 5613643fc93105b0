package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

const msgNoCommits = "No commits to report"

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

func writeText(w io.Writer, rep *Report) error {
	sections := []string{textHeader(rep)}

	if rep.Workload.PW > 0 {
		sections = append(sections,
			workloadTable(rep),
			typesTable(rep),
			authorsTable(rep),
			timelineTable(rep),
		)

		if len(rep.Languages) > 0 {
			sections = append(sections, languagesTable(rep))
		}
	}

	_, err := io.WriteString(w, strings.Join(sections, "\n\n")+"\n")
	if err != nil {
		return renderError(FormatText, err)
	}

	return nil
}

func textHeader(rep *Report) string {
	if rep.Commits == 0 {
		return msgNoCommits
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Commits:  %s (%s merges)\n", humanize.Comma(rep.Commits), humanize.Comma(rep.Merges))
	fmt.Fprintf(&sb, "Changes:  %s (%s unclassified)\n", humanize.Comma(rep.Changes), humanize.Comma(rep.UnknownChanges))
	fmt.Fprintf(&sb, "Period:   %s .. %s (%s)\n",
		rep.Start.Format(time.DateOnly), rep.End.Format(time.DateOnly), period(rep.Start, rep.End))
	fmt.Fprintf(&sb, "Timeline: %s granularity, %s level, %d buckets", rep.Granularity, rep.Level, rep.Buckets)

	return sb.String()
}

func period(start, end time.Time) string {
	if !end.After(start) {
		return "single instant"
	}

	return strings.TrimSpace(humanize.RelTime(start, end, "", ""))
}

func workloadTable(rep *Report) string {
	s := rep.Workload

	tbl := newTable("Workload")
	tbl.AppendHeader(table.Row{"PW", "NAP", "NTP", "PWS", "RPWS", "PIS", "RPIS", "AUTHOR GINI"})
	tbl.AppendRow(table.Row{
		humanize.Comma(int64(s.PW)), s.NAP, s.NTP,
		s.PWS.String(), s.RPWS.String(), s.PIS.String(), s.RPIS.String(), s.AuthorGini.String(),
	})

	return tbl.Render()
}

func typesTable(rep *Report) string {
	tbl := newTable("Activity types")
	tbl.AppendHeader(table.Row{"TYPE", "PTW", "RPTW", "PTI", "RPTI"})

	for _, row := range rep.Workload.Types {
		tbl.AppendRow(table.Row{row.Type, humanize.Comma(int64(row.PTW)), row.RPTW.String(), row.PTI, row.RPTI.String()})
	}

	return tbl.Render()
}

func authorsTable(rep *Report) string {
	types := make([]string, 0, len(rep.Workload.Types))
	for _, row := range rep.Workload.Types {
		types = append(types, row.Type)
	}

	header := table.Row{"AUTHOR", "TOTAL"}
	for _, label := range types {
		header = append(header, strings.ToUpper(label))
	}

	tbl := newTable("Authors")
	tbl.AppendHeader(header)

	for _, author := range rep.Workload.Authors {
		row := table.Row{author.Author, humanize.Comma(int64(author.Total))}
		for _, label := range types {
			row = append(row, author.Types[label])
		}

		tbl.AppendRow(row)
	}

	tbl.AppendFooter(table.Row{"Total: " + strconv.Itoa(len(rep.Workload.Authors)) + " authors"})

	return tbl.Render()
}

func timelineTable(rep *Report) string {
	header := table.Row{"BUCKET", "START"}
	counts := map[int][]int{}
	starts := map[int]time.Time{}

	for idx, curve := range rep.Curves {
		header = append(header, strings.ToUpper(curve.Label))

		for _, point := range curve.Points {
			if _, ok := counts[point.Bucket]; !ok {
				counts[point.Bucket] = make([]int, len(rep.Curves))
				starts[point.Bucket] = point.Start
			}

			counts[point.Bucket][idx] = point.Count
		}
	}

	buckets := make([]int, 0, len(counts))
	for bucket := range counts {
		buckets = append(buckets, bucket)
	}

	slices.Sort(buckets)

	tbl := newTable("Timeline")
	tbl.AppendHeader(header)

	for _, bucket := range buckets {
		row := table.Row{bucket, starts[bucket].Format(time.DateOnly)}
		for _, count := range counts[bucket] {
			row = append(row, count)
		}

		tbl.AppendRow(row)
	}

	return tbl.Render()
}

func languagesTable(rep *Report) string {
	tbl := newTable("Languages")
	tbl.AppendHeader(table.Row{"TYPE", "LANGUAGE", "CHANGES"})

	for _, share := range rep.Languages {
		tbl.AppendRow(table.Row{share.Label, share.Language, humanize.Comma(int64(share.Changes))})
	}

	return tbl.Render()
}
