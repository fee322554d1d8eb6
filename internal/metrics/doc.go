// Copyright 2025-2026 Tenaga Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集。

# 概述

本包为检索引擎与 LLM 客户端定义统一的指标面：摄入计数（按结果分类）、
检索计数与时延分布、语料规模、缓存命中率以及 LLM 请求统计。
Collector 在构造时向给定的 Registerer 注册全部指标，
传入 nil 时使用默认注册表。

# 核心类型

  - Collector：指标收集器，提供 IngestObserved/SearchObserved/
    SetCorpusItems/CacheHit/CacheMiss/LLMObserved 等记录方法。
*/
package metrics
