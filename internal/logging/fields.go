package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求 ID/URL/缓存键/命中状态字段，供 HTTP 请求日志复用。
func RequestFields(requestID, url, key string, cacheHit, shared bool) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"url":        url,
		"cache_key":  key,
		"cache_hit":  cacheHit,
		"shared":     shared,
	}
}

// CacheFields 描述缓存目录与命名空间，用于启动与清理日志。
func CacheFields(action, dir, namespace string) logrus.Fields {
	return logrus.Fields{
		"action":    action,
		"dir":       dir,
		"namespace": namespace,
	}
}
