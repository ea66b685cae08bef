package model

// All 返回需要自动迁移的模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Document{},
		&Space{},
		&SpaceNDASignature{},
		&SpaceVisitor{},
		&Share{},
		&ShareViewer{},
		&SharePageStat{},
		&ShareEvent{},
		&ViewerIdentity{},
		&Session{},
		&SessionPage{},
		&AnalyticsLog{},
		&NotificationLedger{},
		&HeatmapEvent{},
		&IntentSignal{},
		&Presence{},
	}
}
