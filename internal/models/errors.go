package models

import "errors"

// 控制操作的命名错误（同步返回给调用方）
var (
	// ErrNoEntries 未配置任何体脂秤
	ErrNoEntries = errors.New("no scale entries configured")

	// ErrEntryNotFound 指定的体脂秤不存在
	ErrEntryNotFound = errors.New("scale entry not found")

	// ErrPersonNotFound 指定的人员档案不存在
	ErrPersonNotFound = errors.New("person not found")

	// ErrNoGuestSample 当前没有可重新归属的访客读数
	ErrNoGuestSample = errors.New("no guest sample available")
)
