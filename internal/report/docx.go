// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report turns harvested rows into documents for reading: a Word
// summary of titles and abstracts, a numbered Word reference list, and a
// CSV copy of the paper rows with duplicate abstracts flagged.
package report

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Paragraph alignments.
const (
	AlignLeft   = ""
	AlignCenter = "center"
)

// Run is a span of text with one character format.
type Run struct {
	Text string
	Bold bool

	// SizePt overrides the document font size when > 0.
	SizePt float64
}

// Paragraph is a block of runs.
type Paragraph struct {
	Runs  []Run
	Align string

	SpaceAfterPt float64

	// LineSpacing is a multiple of single spacing; 0 keeps the default.
	LineSpacing float64
}

// Document is a minimal WordprocessingML document: one font, one section,
// a sequence of paragraphs.
type Document struct {
	Font   string
	SizePt float64

	// LineSpacing is the default for paragraphs that do not set one.
	LineSpacing float64

	Paragraphs []Paragraph
}

// Add appends a paragraph.
func (d *Document) Add(p Paragraph) {
	d.Paragraphs = append(d.Paragraphs, p)
}

// WriteTo writes d as a .docx package.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", d.stylesXML()},
		{"word/document.xml", d.documentXML()},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return cw.n, fmt.Errorf("creating %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, p.body); err != nil {
			return cw.n, fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("finishing docx: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const contentTypesXML = xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const relsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// halfPoints converts a point size to the half-point units of w:sz.
func halfPoints(pt float64) int { return int(pt*2 + 0.5) }

// twips converts points to twentieths of a point.
func twips(pt float64) int { return int(pt*20 + 0.5) }

// lineUnits converts a spacing multiple to 240ths of a line.
func lineUnits(mult float64) int { return int(mult*240 + 0.5) }

func (d *Document) stylesXML() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<w:styles ` + wordNS + `><w:docDefaults><w:rPrDefault><w:rPr>`)
	if d.Font != "" {
		font := escape(d.Font)
		fmt.Fprintf(&b, `<w:rFonts w:ascii="%s" w:hAnsi="%s" w:cs="%s" w:eastAsia="%s"/>`, font, font, font, font)
	}
	if d.SizePt > 0 {
		fmt.Fprintf(&b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, halfPoints(d.SizePt), halfPoints(d.SizePt))
	}
	b.WriteString(`</w:rPr></w:rPrDefault><w:pPrDefault><w:pPr>`)
	if d.LineSpacing > 0 {
		fmt.Fprintf(&b, `<w:spacing w:line="%d" w:lineRule="auto"/>`, lineUnits(d.LineSpacing))
	}
	b.WriteString(`</w:pPr></w:pPrDefault></w:docDefaults>`)
	b.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>`)
	b.WriteString(`</w:styles>`)
	return b.String()
}

func (d *Document) documentXML() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<w:document ` + wordNS + `><w:body>`)
	for _, p := range d.Paragraphs {
		writeParagraph(&b, p)
	}
	// Letter page with one inch margins.
	b.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/>` +
		`</w:sectPr>`)
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeParagraph(b *strings.Builder, p Paragraph) {
	b.WriteString(`<w:p>`)
	if p.Align != "" || p.SpaceAfterPt > 0 || p.LineSpacing > 0 {
		b.WriteString(`<w:pPr>`)
		if p.SpaceAfterPt > 0 || p.LineSpacing > 0 {
			b.WriteString(`<w:spacing`)
			if p.SpaceAfterPt > 0 {
				fmt.Fprintf(b, ` w:after="%d"`, twips(p.SpaceAfterPt))
			}
			if p.LineSpacing > 0 {
				fmt.Fprintf(b, ` w:line="%d" w:lineRule="auto"`, lineUnits(p.LineSpacing))
			}
			b.WriteString(`/>`)
		}
		if p.Align != "" {
			fmt.Fprintf(b, `<w:jc w:val="%s"/>`, p.Align)
		}
		b.WriteString(`</w:pPr>`)
	}
	for _, r := range p.Runs {
		b.WriteString(`<w:r>`)
		if r.Bold || r.SizePt > 0 {
			b.WriteString(`<w:rPr>`)
			if r.Bold {
				b.WriteString(`<w:b/><w:bCs/>`)
			}
			if r.SizePt > 0 {
				fmt.Fprintf(b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, halfPoints(r.SizePt), halfPoints(r.SizePt))
			}
			b.WriteString(`</w:rPr>`)
		}
		fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, escape(r.Text))
		b.WriteString(`</w:r>`)
	}
	b.WriteString(`</w:p>`)
}

// escape returns s as XML character data, dropping characters XML 1.0
// cannot carry.
func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' || r >= 0x20 && r != 0xFFFE && r != 0xFFFF {
			return r
		}
		return -1
	}, s)))
	return b.String()
}
