// Copyright 2025-2026 Tenaga Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的检索结果缓存。

# 概述

本包封装 go-redis 客户端，为检索引擎提供查询结果缓存能力。
缓存键由语料代数（generation）参与构造：每次知识库变更后代数递增，
旧键自然失效，无需显式清理。Redis 不可用时引擎直接退化为无缓存模式。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端，提供 Get/Set 与
    GetJSON/SetJSON 读写，以及 Ping 健康检查与 Close 优雅关闭。
  - Config：缓存配置，包含地址、密码、连接池大小与默认 TTL。
*/
package cache
