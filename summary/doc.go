// Copyright 2025-2026 Tenaga Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package summary turns structured energy-analytics datasets into short
// natural-language knowledge items suitable for retrieval.
//
// Dashboards hold their data as tables (buildings, electricity consumption,
// weather, water); retrieval works on text. Summarize renders each table
// into a deterministic set of aggregate summaries — per building type, per
// zone, surface statistics, hourly and weekly consumption patterns, temporal
// coverage, weather and water overviews — each tagged with a typed metadata
// block so downstream consumers can filter by summary kind.
//
// IndexDataset feeds the summaries straight into a rag.Engine.
package summary
