package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/mverih/tezga/internal/models"
)

// document is the product projection stored in the index. Category ids are
// flattened so the query can filter on them.
type document struct {
	models.Product
	CategoryIDs []uint `json:"category_ids"`
}

type Query struct {
	Text       string
	CategoryID uint
	MinPrice   string
	MaxPrice   string
	From       int
	Size       int
}

func IndexProduct(ctx context.Context, es *elasticsearch.Client, index string, p models.Product) error {
	if es == nil {
		return nil
	}
	doc := document{Product: p, CategoryIDs: make([]uint, 0, len(p.Categories))}
	for _, cat := range p.Categories {
		doc.CategoryIDs = append(doc.CategoryIDs, cat.ID)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal product: %w", err)
	}
	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("search: index product: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index product: %s", res.Status())
	}
	return nil
}

func RemoveProduct(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	if es == nil {
		return nil
	}
	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(id), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: remove product: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("search: remove product: %s", res.Status())
	}
	return nil
}

func Search(ctx context.Context, es *elasticsearch.Client, index string, q Query) (int64, []models.Product, error) {
	filter := []map[string]interface{}{
		{"term": map[string]interface{}{"status": models.ProductActive}},
	}
	if q.CategoryID != 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"category_ids": q.CategoryID},
		})
	}
	if q.MinPrice != "" || q.MaxPrice != "" {
		rng := map[string]interface{}{}
		if q.MinPrice != "" {
			rng["gte"] = q.MinPrice
		}
		if q.MaxPrice != "" {
			rng["lte"] = q.MaxPrice
		}
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"price": rng},
		})
	}

	boolQuery := map[string]interface{}{"filter": filter}
	if q.Text != "" {
		boolQuery["must"] = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q.Text,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		}
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"from":  q.From,
		"size":  q.Size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: query failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: query failed: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = hit.Source.Product
	}
	return r.Hits.Total.Value, prods, nil
}
