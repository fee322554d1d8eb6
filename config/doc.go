// Copyright 2025-2026 Tenaga Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 config 提供 Tenaga 的统一配置加载。

# 概述

配置优先级：默认值 → YAML 文件 → 环境变量。
环境变量键由前缀与各级 env 标签拼接而成，如 TENAGA_STORE_PATH、
TENAGA_RETRIEVAL_TOP_K_DEFAULT。

# 使用方法

	cfg, err := config.NewLoader().
	    WithConfigPath("tenaga.yaml").
	    WithEnvPrefix("TENAGA").
	    Load()
*/
package config
