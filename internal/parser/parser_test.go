package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popoloni/codescope/pkg/types"
)

func parseString(t *testing.T, name, source string) *types.ParsedFile {
	t.Helper()
	result, err := New().Parse(name, []byte(source))
	require.NoError(t, err)
	return result
}

func elementByName(result *types.ParsedFile, name string) *types.CodeElement {
	for i := range result.Elements {
		if result.Elements[i].Name == name {
			return &result.Elements[i]
		}
	}
	return nil
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LangGo, DetectLanguage("main.go"))
	assert.Equal(t, LangPython, DetectLanguage("app/models.py"))
	assert.Equal(t, LangJavaScript, DetectLanguage("src/App.jsx"))
	assert.Equal(t, LangTypeScript, DetectLanguage("src/service.TS"))
	assert.Equal(t, LangJava, DetectLanguage("Main.java"))
	assert.Equal(t, LangGeneric, DetectLanguage("script.rb"))
	assert.Equal(t, LangGeneric, DetectLanguage("Makefile"))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("main.go"))
	assert.True(t, Supported("models.py"))
	assert.False(t, Supported("README.md"))
	assert.False(t, Supported("Makefile"))
}

func TestParseGo(t *testing.T) {
	source := `package store

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLimit caps result sets.
const DefaultLimit = 10

var registry = map[string]int{}

// Cache wraps an LRU with typed access.
type Cache struct {
	inner *lru.Cache
	name  string
}

// Reader is the read-only view.
type Reader interface {
	Get(key string) (int, bool)
}

// Get looks a key up.
func (c *Cache) Get(key string) (int, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func helper() string {
	return fmt.Sprintf("%d", DefaultLimit)
}
`
	result := parseString(t, "cache.go", source)
	assert.Equal(t, LangGo, result.Language)
	assert.Empty(t, result.ParseErrors)

	cache := elementByName(result, "Cache")
	require.NotNil(t, cache)
	assert.Equal(t, types.KindClass, cache.Kind)
	assert.Equal(t, "Cache wraps an LRU with typed access.", cache.Description)
	assert.Contains(t, cache.Dependencies, "Cache")

	reader := elementByName(result, "Reader")
	require.NotNil(t, reader)
	assert.Equal(t, types.KindInterface, reader.Kind)

	get := elementByName(result, "Cache.Get")
	require.NotNil(t, get)
	assert.Equal(t, types.KindMethod, get.Kind)
	assert.Contains(t, get.Dependencies, "Cache")
	assert.Greater(t, get.EndLine, get.StartLine)
	assert.Contains(t, get.Snippet, "func (c *Cache) Get")

	helper := elementByName(result, "helper")
	require.NotNil(t, helper)
	assert.Equal(t, types.KindFunction, helper.Kind)

	limit := elementByName(result, "DefaultLimit")
	require.NotNil(t, limit)
	assert.Equal(t, types.KindConstant, limit.Kind)

	reg := elementByName(result, "registry")
	require.NotNil(t, reg)
	assert.Equal(t, types.KindVariable, reg.Kind)

	require.Len(t, result.Imports, 2)
	assert.False(t, result.Imports[1].IsLocal, "dotted module path is external")
	assert.Equal(t, "lru", result.Imports[1].Alias)
}

func TestParseGoSyntaxError(t *testing.T) {
	result := parseString(t, "broken.go", "package x\n\nfunc oops( {\n")
	assert.NotEmpty(t, result.ParseErrors)
}

func TestParsePython(t *testing.T) {
	source := `from django.db import models
from .utils import slugify
import os
import numpy as np

MAX_RETRIES = 3

class Article(models.Model):
    def publish(self):
        return True

    async def archive(self):
        return False

def render_article(article):
    return article.title
`
	result := parseString(t, "articles.py", source)
	assert.Equal(t, LangPython, result.Language)

	article := elementByName(result, "Article")
	require.NotNil(t, article)
	assert.Equal(t, types.KindClass, article.Kind)

	publish := elementByName(result, "Article.publish")
	require.NotNil(t, publish)
	assert.Equal(t, types.KindMethod, publish.Kind)

	archive := elementByName(result, "Article.archive")
	require.NotNil(t, archive)
	assert.Equal(t, types.KindMethod, archive.Kind)

	render := elementByName(result, "render_article")
	require.NotNil(t, render)
	assert.Equal(t, types.KindFunction, render.Kind)

	retries := elementByName(result, "MAX_RETRIES")
	require.NotNil(t, retries)
	assert.Equal(t, types.KindConstant, retries.Kind)

	require.Len(t, result.Imports, 4)
	local := 0
	for _, imp := range result.Imports {
		if imp.IsLocal {
			local++
		}
	}
	assert.Equal(t, 1, local, "only the relative import is local")

	np := result.Imports[3]
	assert.Equal(t, "numpy", np.Module)
	assert.Equal(t, "np", np.Alias)
	assert.Equal(t, "np", np.BaseName())
}

func TestParseJavaScript(t *testing.T) {
	source := `import { api } from './api'
const lodash = require('lodash')

export class OrderList {
}

export const formatPrice = (cents) => (cents / 100).toFixed(2)

export function submitOrder(order) {
	return api.post('/orders', order)
}

let retryCount = 0
`
	result := parseString(t, "orders.js", source)
	assert.Equal(t, LangJavaScript, result.Language)

	require.NotNil(t, elementByName(result, "OrderList"))
	assert.Equal(t, types.KindClass, elementByName(result, "OrderList").Kind)

	format := elementByName(result, "formatPrice")
	require.NotNil(t, format)
	assert.Equal(t, types.KindFunction, format.Kind)

	submit := elementByName(result, "submitOrder")
	require.NotNil(t, submit)
	assert.Equal(t, types.KindFunction, submit.Kind)

	retry := elementByName(result, "retryCount")
	require.NotNil(t, retry)
	assert.Equal(t, types.KindVariable, retry.Kind)

	require.Len(t, result.Imports, 2)
	assert.True(t, result.Imports[0].IsLocal)
	assert.Equal(t, "lodash", result.Imports[1].Alias)
}

func TestParseTypeScript(t *testing.T) {
	source := `import { Injectable } from '@angular/core'

export interface Invoice {
	id: string
	total: number
}

export enum InvoiceState {
	Draft,
	Sent,
}

@Injectable()
export class InvoiceService {
}
`
	result := parseString(t, "invoice.service.ts", source)
	assert.Equal(t, LangTypeScript, result.Language)

	invoice := elementByName(result, "Invoice")
	require.NotNil(t, invoice)
	assert.Equal(t, types.KindInterface, invoice.Kind)

	state := elementByName(result, "InvoiceState")
	require.NotNil(t, state)
	assert.Equal(t, types.KindEnum, state.Kind)

	service := elementByName(result, "InvoiceService")
	require.NotNil(t, service)
	assert.Equal(t, types.KindService, service.Kind)
}

func TestParseJava(t *testing.T) {
	source := `package com.shop;

import java.util.List;
import org.springframework.stereotype.Service;

public interface PriceSource {
}

public enum Currency {
}

public class PriceCalculator {
    public double total(List<Double> prices) {
        return prices.stream().mapToDouble(Double::doubleValue).sum();
    }
}
`
	result := parseString(t, "PriceCalculator.java", source)
	assert.Equal(t, LangJava, result.Language)

	require.NotNil(t, elementByName(result, "PriceSource"))
	assert.Equal(t, types.KindInterface, elementByName(result, "PriceSource").Kind)
	require.NotNil(t, elementByName(result, "Currency"))
	assert.Equal(t, types.KindEnum, elementByName(result, "Currency").Kind)
	require.NotNil(t, elementByName(result, "PriceCalculator"))
	require.NotNil(t, elementByName(result, "PriceCalculator.total"))
	assert.Equal(t, types.KindMethod, elementByName(result, "PriceCalculator.total").Kind)
	require.Len(t, result.Imports, 2)
}

func TestParseGoSameMethodNameOnTwoReceivers(t *testing.T) {
	source := `package conn

type Pool struct{}

func (p *Pool) Close() error { return nil }

type Session struct{}

func (s *Session) Close() error { return nil }
`
	result := parseString(t, "conn.go", source)
	assert.Empty(t, result.ParseErrors)

	poolClose := elementByName(result, "Pool.Close")
	require.NotNil(t, poolClose)
	assert.Equal(t, types.KindMethod, poolClose.Kind)

	sessionClose := elementByName(result, "Session.Close")
	require.NotNil(t, sessionClose)
	assert.Equal(t, types.KindMethod, sessionClose.Kind)

	names := make(map[string]bool)
	for _, e := range result.Elements {
		assert.False(t, names[e.Name], "duplicate element name %s", e.Name)
		names[e.Name] = true
	}
}

func TestParsePythonSameMethodNameInTwoClasses(t *testing.T) {
	source := `class Account:
    def __init__(self):
        self.balance = 0

class Order:
    def __init__(self):
        self.items = []
`
	result := parseString(t, "models.py", source)

	require.NotNil(t, elementByName(result, "Account.__init__"))
	require.NotNil(t, elementByName(result, "Order.__init__"))
	assert.Nil(t, elementByName(result, "__init__"))

	names := make(map[string]bool)
	for _, e := range result.Elements {
		assert.False(t, names[e.Name], "duplicate element name %s", e.Name)
		names[e.Name] = true
	}
}

func TestQualifyNamesSuffixesResidualDuplicates(t *testing.T) {
	result := &types.ParsedFile{
		Elements: []types.CodeElement{
			{Name: "handler", Kind: types.KindFunction, StartLine: 1, EndLine: 2},
			{Name: "handler", Kind: types.KindFunction, StartLine: 5, EndLine: 6},
		},
	}
	qualifyNames(result)
	assert.Equal(t, "handler", result.Elements[0].Name)
	assert.Equal(t, "handler#2", result.Elements[1].Name)
}

func TestParseGenericFallback(t *testing.T) {
	source := `require 'json'

class Wallet
  def balance
    0
  end
end
`
	result := parseString(t, "wallet.rb", source)
	assert.Equal(t, LangGeneric, result.Language)
	require.NotNil(t, elementByName(result, "Wallet"))
	require.NotNil(t, elementByName(result, "balance"))
	assert.NotEmpty(t, result.Imports)
}

func TestParseEnrichment(t *testing.T) {
	result := parseString(t, "m.py", "def run():\n    return 1\n")
	elem := elementByName(result, "run")
	require.NotNil(t, elem)
	assert.Equal(t, "m.py", elem.FilePath)
	require.NotNil(t, elem.Complexity)
	assert.GreaterOrEqual(t, *elem.Complexity, 1.0)
}

func TestParseLineAndSizeCounts(t *testing.T) {
	result := parseString(t, "m.py", "a = 1\nb = 2\n")
	assert.Equal(t, 3, result.LineCount)
	assert.Equal(t, int64(12), result.SizeBytes)

	empty := parseString(t, "e.py", "")
	assert.Equal(t, 0, empty.LineCount)
}

func TestParseBatchIsolatesReadFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.py")
	require.NoError(t, os.WriteFile(good, []byte("def run():\n    pass\n"), 0o644))
	missing := filepath.Join(dir, "missing.py")

	results := New().ParseBatch([]string{good, missing})
	require.Len(t, results, 2)

	assert.Empty(t, results[0].ParseErrors)
	assert.NotEmpty(t, results[0].Elements)

	assert.NotEmpty(t, results[1].ParseErrors)
	assert.Empty(t, results[1].Elements)
}

func TestScoreComplexity(t *testing.T) {
	assert.Equal(t, 1.0, scoreComplexity("", LangPython))

	simple := scoreComplexity("def run():\n    return 1\n", LangPython)
	branchy := scoreComplexity(`def run(items):
    for item in items:
        if item.valid and item.price:
            while item.pending:
                item.retry()
`, LangPython)
	assert.Greater(t, branchy, simple)
}
