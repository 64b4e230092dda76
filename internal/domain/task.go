package domain

// Task 是派发给隔离 worker 的唯一消息：目录 + 文件名。
// worker 之间不共享可变状态；各自写出一个由文件名派生的输出文件。
type Task struct {
	Dir  string
	File string
}

// DispatchPlan 是一个索引需要派发的外部子文档。
type DispatchPlan struct {
	Shells      []Task
	Annotations []Task
}
