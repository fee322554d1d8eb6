package rag

import (
	"sort"

	"github.com/ujana-my/tenaga/rag/embedding"
)

// =============================================================================
// 双通道召回与加权融合
// =============================================================================

type scoredDoc struct {
	index int
	score float64
}

// topCandidates 对矩阵全行计算与查询向量的余弦相似度，
// 保留超过阈值的前 limit 行。返回 行号 → 得分。
func topCandidates(matrix [][]float64, query []float64, threshold float64, limit int) map[int]float64 {
	if len(matrix) == 0 || len(query) == 0 {
		return nil
	}

	scored := make([]scoredDoc, 0, len(matrix))
	for i, row := range matrix {
		score := embedding.CosineSimilarity(query, row)
		if score > threshold {
			scored = append(scored, scoredDoc{index: i, score: score})
		}
	}
	if len(scored) == 0 {
		return nil
	}

	sort.Slice(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].index < scored[b].index
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	out := make(map[int]float64, len(scored))
	for _, s := range scored {
		out[s.index] = s.score
	}
	return out
}

// fuse 融合两通道候选：score = wL·lexical + wS·semantic。
// semScores 为 nil 表示语义通道缺席，词法权重升为 1.0（纯词法模式
// 不稀释得分）；通道运行但无候选时调用方传入空 map，权重保持不变。
// 并列得分按插入顺序（行号升序）稳定排序。
func (e *Engine) fuse(lexScores, semScores map[int]float64, topK int) []scoredDoc {
	wLex := e.config.LexicalWeight
	wSem := e.config.SemanticWeight
	if semScores == nil {
		wLex = 1.0
		wSem = 0
	}

	union := make(map[int]struct{}, len(lexScores)+len(semScores))
	for i := range lexScores {
		union[i] = struct{}{}
	}
	for i := range semScores {
		union[i] = struct{}{}
	}

	fused := make([]scoredDoc, 0, len(union))
	for i := range union {
		fused = append(fused, scoredDoc{
			index: i,
			score: wLex*lexScores[i] + wSem*semScores[i],
		})
	}

	sort.Slice(fused, func(a, b int) bool {
		if fused[a].score != fused[b].score {
			return fused[a].score > fused[b].score
		}
		return fused[a].index < fused[b].index
	})
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
