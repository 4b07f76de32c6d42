package queue

// Store key layout per queue name. Job hash keys are derived from the prefix
// inside the transition scripts.
func jobKeyPrefix(name string) string { return "q:" + name + ":job:" }

func jobKey(name, id string) string { return jobKeyPrefix(name) + id }

func pendingKey(name string) string { return "q:" + name + ":pending" }

func delayedKey(name string) string { return "q:" + name + ":delayed" }

func activeKey(name string) string { return "q:" + name + ":active" }

func completedKey(name string) string { return "q:" + name + ":completed" }

func deadKey(name string) string { return "q:" + name + ":dead" }
