package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// titleAnalyzer splits on Unicode word boundaries and lowercases, with no
// stemming or stop words, so Cyrillic and Latin titles behave alike.
const titleAnalyzer = "title"

func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(titleAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = titleAnalyzer

	docMapping := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = titleAnalyzer
	title.Store = true
	title.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", title)

	for _, field := range []string{"id", "user_id", "shelf_id"} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = true
		docMapping.AddFieldMappingsAt(field, kw)
	}

	pages := bleve.NewNumericFieldMapping()
	pages.Store = true
	docMapping.AddFieldMappingsAt("pages", pages)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping, nil
}
