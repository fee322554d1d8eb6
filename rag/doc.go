// Copyright 2025-2026 Tenaga Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 实现 Tenaga 的混合检索引擎：知识条目的持久化存储、
词法（TF-IDF）与语义（句向量）双通道 embedding、混合打分融合、
内容去重、增量索引与来源（citation）管理。

# 核心类型

  - Engine — 检索引擎门面：Ingest / IngestBatch / Search / Clear / Stats
  - Store — 基于 GORM + SQLite 的持久化存储，重启后可完整重建语料
  - Corpus — 内存语料镜像：条目列表与两个 embedding 矩阵，行号对齐
  - SourceRegistry — 文档来源登记：引用标注、按来源分组、软删除与硬清除
  - DocumentChunker — 面向 token 预算的文档分块器

# 不变量

  - I1：content_hash 在存储中唯一，重复内容的 Ingest 是无操作
  - I2：条目列表与词法矩阵行数恒等；语义通道可用时语义矩阵行数同样恒等
    （embedding 失败的条目占位零向量，保证行对齐）
  - I3：词法词表由全量语料拟合，每次插入触发全量词法向量重建

# 并发模型

单写者假设：Corpus 持有唯一的读写锁，Ingest/Clear/Purge 独占，
Search 共享，锁覆盖整个调用并在所有退出路径释放。
*/
package rag
