// Package mbank parses mBank HTML e-mail statements.
package mbank

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"github.com/jwojci/budget-agent/pkg/api"
)

// SenderName is the bank identifier matched against the email sender.
const SenderName = "mBank"

// Parser extracts transaction records from mBank notification statements.
// The statements are ISO-8859-2 encoded HTML documents carrying a single
// bordered table of (time, description) rows.
type Parser struct{}

// New creates an mBank statement parser.
func New() *Parser {
	return &Parser{}
}

// SenderName returns the bank sender identifier this parser handles.
func (p *Parser) SenderName() string {
	return SenderName
}

// Parse extracts raw transaction records from one statement document.
// A document without the bordered table is a valid "no transactions"
// result and returns an empty slice.
func (p *Parser) Parse(r io.Reader) ([]api.RawRecord, error) {
	doc, err := html.Parse(charmap.ISO8859_2.NewDecoder().Reader(r))
	if err != nil {
		return nil, fmt.Errorf("parsing statement html: %w", err)
	}

	table := findBorderedTable(doc)
	if table == nil {
		return nil, nil
	}

	rows := findAll(table, "tr")
	if len(rows) <= 1 {
		return nil, nil
	}

	var records []api.RawRecord
	// First row is the table header.
	for _, row := range rows[1:] {
		cols := findAll(row, "td")
		if len(cols) != 2 {
			continue
		}
		records = append(records, api.RawRecord{
			Time:        nodeText(cols[0]),
			Description: nodeText(cols[1]),
		})
	}

	return records, nil
}

// findBorderedTable returns the first <table border="1"> in document order.
func findBorderedTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, attr := range n.Attr {
			if attr.Key == "border" && attr.Val == "1" {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if table := findBorderedTable(c); table != nil {
			return table
		}
	}
	return nil
}

// findAll returns all descendant elements with the given tag in document order.
func findAll(n *html.Node, tag string) []*html.Node {
	var nodes []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			nodes = append(nodes, c)
		}
		nodes = append(nodes, findAll(c, tag)...)
	}
	return nodes
}

// nodeText concatenates the trimmed text content of a node's subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
