package vo

// JobState 单次转码作业状态
type JobState string

const (
	// JobStateCreated 已创建，工作目录已分配
	JobStateCreated JobState = "CREATED"
	// JobStateInputWritten 输入文件已写入工作目录
	JobStateInputWritten JobState = "INPUT_WRITTEN"
	// JobStateEncoding 编码器运行中
	JobStateEncoding JobState = "ENCODING"
	// JobStateArtifactsUploaded 产物已上传
	JobStateArtifactsUploaded JobState = "ARTIFACTS_UPLOADED"
	// JobStateFailed 失败
	JobStateFailed JobState = "FAILED"
	// JobStateCleanedUp 工作目录已删除
	JobStateCleanedUp JobState = "CLEANED_UP"
)

// IsValid 检查状态是否有效
func (s JobState) IsValid() bool {
	switch s {
	case JobStateCreated, JobStateInputWritten, JobStateEncoding,
		JobStateArtifactsUploaded, JobStateFailed, JobStateCleanedUp:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s JobState) String() string {
	return string(s)
}

// IsFinal 检查是否为最终状态
func (s JobState) IsFinal() bool {
	return s == JobStateCleanedUp
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s JobState) CanTransitionTo(target JobState) bool {
	switch s {
	case JobStateCreated:
		return target == JobStateInputWritten || target == JobStateFailed || target == JobStateCleanedUp
	case JobStateInputWritten:
		return target == JobStateEncoding || target == JobStateFailed
	case JobStateEncoding:
		return target == JobStateArtifactsUploaded || target == JobStateFailed
	case JobStateArtifactsUploaded:
		return target == JobStateCleanedUp
	case JobStateFailed:
		return target == JobStateCleanedUp
	case JobStateCleanedUp:
		return false // 最终状态不能转换
	default:
		return false
	}
}
