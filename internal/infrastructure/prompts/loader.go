package prompts

import (
	_ "embed"
)

//go:embed planner.txt
var PlannerPrompt string

//go:embed reflect.txt
var ReflectPrompt string

//go:embed synthesize.txt
var SynthesizePrompt string

//go:embed clip_answer.txt
var ClipAnswerPrompt string

//go:embed frame_describe.txt
var FrameDescribePrompt string
