package prefix

// SetBeforeStep installs a hook invoked before each commit step, used to
// inject failures at precise points.
func (e *Executor) SetBeforeStep(hook func(step int) error) {
	e.beforeStep = hook
}
