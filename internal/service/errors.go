package service

import (
	"errors"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrLevelNotFound     = errors.New("VIP等级不存在")
	ErrAccessNotFound    = errors.New("VIP权限不存在")
	ErrDuplicateAccess   = errors.New("该等级分类下已有进行中的VIP权限")
	ErrInvalidTransition = errors.New("当前状态不允许该操作")
	ErrNoteRequired      = errors.New("拒绝申请必须填写备注")
	ErrComboNotFound     = errors.New("连单配置不存在")
	ErrComboLocked       = errors.New("连单位置已消费，不可修改")
	ErrInvalidAmount     = errors.New("金额必须大于0")
)
