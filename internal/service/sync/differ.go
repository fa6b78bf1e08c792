// Package sync 实现外部数据源的增量同步：
// 远端与本地的差量计划，以及逐项隔离失败的同步编排
package sync

import (
	"fmt"
	"time"

	"github.com/executa/knowledge-engine/internal/service/connector"
)

// LocalFile 本地已有文件在比对中的投影
type LocalFile struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Plan 差量计划
type Plan struct {
	ToFetch []connector.RemoteFile
	ToSkip  []connector.RemoteFile
}

// BuildPlan 计算远端文件的差量计划
// 本地存在同名同大小的文件、且远端修改时间不晚于本地更新时间的跳过；
// 这是避免重复下载的启发式，真正的去重由内容哈希兜底
func BuildPlan(remote []connector.RemoteFile, local []LocalFile) *Plan {
	latest := make(map[string]time.Time, len(local))
	for _, lf := range local {
		key := localKey(lf.Name, lf.Size)
		if existing, ok := latest[key]; !ok || lf.UpdatedAt.After(existing) {
			latest[key] = lf.UpdatedAt
		}
	}

	plan := &Plan{}
	for _, rf := range remote {
		updatedAt, ok := latest[localKey(rf.Name, rf.Size)]
		if ok && !rf.LastModified.After(updatedAt) {
			plan.ToSkip = append(plan.ToSkip, rf)
			continue
		}
		plan.ToFetch = append(plan.ToFetch, rf)
	}
	return plan
}

func localKey(name string, size int64) string {
	return fmt.Sprintf("%s|%d", name, size)
}
