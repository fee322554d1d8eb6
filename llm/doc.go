// Copyright 2025-2026 Tenaga Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供面向本地 Ollama 服务的生成式分析客户端。

# 概述

Client 封装 /api/generate 接口，支持同步生成与 NDJSON 流式生成。
BuildPrompt 把检索上下文与用户问题组装成能源分析提示词；
Analyze 在模型不可用或调用失败时返回降级的固定格式回答，
保证上层对话界面始终有输出。

# 核心类型

  - Client：LLM 客户端，持有 HTTP 连接与模型配置。
  - Config：服务地址、模型名、请求超时与采样参数。
  - Analysis：一次分析的结果，标记是否来自降级路径。
*/
package llm
