package redis

import "errors"

// ErrLockNotHeld 释放锁时持有者不匹配或锁已过期
var ErrLockNotHeld = errors.New("redis: lock not held")
