package mqtt

import "fmt"

// Topic prefixes for the Levl MQTT hierarchy.
//
// All topics use the scheme: levl/{category}/{id}/{event}
const (
	// TopicPrefix is the base for all Levl topics.
	TopicPrefix = "levl"

	// TopicPrefixJob is the base for job lifecycle topics.
	TopicPrefixJob = "levl/job"

	// TopicPrefixPipeline is the base for pipeline stage topics.
	TopicPrefixPipeline = "levl/pipeline"

	// TopicPrefixComfy is the base for ComfyUI topics.
	TopicPrefixComfy = "levl/comfy"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "levl/system"
)

// Topics provides builders for Levl MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.JobState("1724931642513_a1b2c3d4")
//	// Returns: "levl/job/1724931642513_a1b2c3d4/state"
type Topics struct{}

// JobState returns the topic for job status transitions.
//
// Example: levl/job/1724931642513_a1b2c3d4/state
func (Topics) JobState(jobID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixJob, jobID)
}

// JobResult returns the topic for final job results.
//
// Example: levl/job/1724931642513_a1b2c3d4/result
func (Topics) JobResult(jobID string) string {
	return fmt.Sprintf("%s/%s/result", TopicPrefixJob, jobID)
}

// PipelineStage returns the topic for pipeline stage transitions.
//
// Example: levl/pipeline/1724931642513_a1b2c3d4/stage
func (Topics) PipelineStage(pipelineID string) string {
	return fmt.Sprintf("%s/%s/stage", TopicPrefixPipeline, pipelineID)
}

// ComfyProgress returns the topic for ComfyUI execution progress.
//
// Example: levl/comfy/progress/3f2b9c4e-1a5d-4e8f-9c7b-2d6a8e4f1b3c
func (Topics) ComfyProgress(promptID string) string {
	return fmt.Sprintf("%s/progress/%s", TopicPrefixComfy, promptID)
}

// ComfyStatus returns the topic for ComfyUI server availability.
//
// Example: levl/comfy/status
func (Topics) ComfyStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixComfy)
}

// BridgeCommand returns the topic announcing a command enqueued to the
// file-drop bridge.
//
// Example: levl/bridge/command/render_scene
func (Topics) BridgeCommand(action string) string {
	return fmt.Sprintf("%s/bridge/command/%s", TopicPrefix, action)
}

// BridgeResult returns the topic announcing a bridge command result.
//
// Example: levl/bridge/result/1724931642513_a1b2c3d4
func (Topics) BridgeResult(commandID string) string {
	return fmt.Sprintf("%s/bridge/result/%s", TopicPrefix, commandID)
}

// SystemStatus returns the system status topic. This topic carries the
// LWT message and retained online/offline payloads.
//
// Example: levl/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: levl/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// AllJobStates returns a pattern matching all job state transitions.
//
// Pattern: levl/job/+/state
func (Topics) AllJobStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixJob)
}

// AllJobResults returns a pattern matching all job results.
//
// Pattern: levl/job/+/result
func (Topics) AllJobResults() string {
	return fmt.Sprintf("%s/+/result", TopicPrefixJob)
}

// AllPipelineStages returns a pattern matching all pipeline stage updates.
//
// Pattern: levl/pipeline/+/stage
func (Topics) AllPipelineStages() string {
	return fmt.Sprintf("%s/+/stage", TopicPrefixPipeline)
}

// AllComfyProgress returns a pattern matching all ComfyUI progress updates.
//
// Pattern: levl/comfy/progress/+
func (Topics) AllComfyProgress() string {
	return fmt.Sprintf("%s/progress/+", TopicPrefixComfy)
}

// AllBridgeResults returns a pattern matching all bridge command results.
//
// Pattern: levl/bridge/result/+
func (Topics) AllBridgeResults() string {
	return fmt.Sprintf("%s/bridge/result/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Levl topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: levl/#
func (Topics) AllTopics() string {
	return "levl/#"
}
