package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/scoreapp/score/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func recommendationTable(recs []model.Recommendation) string {
	rows := make([][]string, 0, len(recs))
	for i, rec := range recs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			rec.Title,
			rec.Artist,
			fmt.Sprintf("%.1f", rec.SimilarityScore),
		})
	}
	return renderTable(
		[]string{"#", "Title", "Artist", "Similarity"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}

func analysisTable(a model.Analysis) string {
	rows := [][]string{
		{"Key", a.Key},
		{"Time signature", a.TimeSignature},
	}
	for i, name := range model.FeatureNames {
		rows = append(rows, []string{name, fmt.Sprintf("%g", a.Features()[i])})
	}
	return renderTable([]string{"Feature", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
