package tools

// Tern 三元运算符
func Tern[T bool, U any](isTrue T, ifValue U, elseValue U) U {
	if isTrue {
		return ifValue
	}
	return elseValue
}
