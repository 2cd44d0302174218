// Package parser implements the document parser subsystem: a registry of
// format-specific parsers (PDF, Office, HTML) behind a single IDocumentParser
// contract, plus the PDF strategy chain (native text, VLM, OCR, cloud batch)
// that falls back through increasingly expensive extraction strategies when
// a cheaper one does not yield substantive text.
//
// No strategy fails silently: every fallback records why the previous
// strategy was rejected in the result's Warnings.
package parser
