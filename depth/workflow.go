package depth

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed depth_workflow.json
var workflowTemplate []byte

// workflow is a ComfyUI prompt graph keyed by node id.
type workflow map[string]*workflowNode

type workflowNode struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

func loadWorkflow() (workflow, error) {
	var w workflow
	if err := json.Unmarshal(workflowTemplate, &w); err != nil {
		return nil, fmt.Errorf("parsing workflow template: %w", err)
	}
	return w, nil
}

// findNode returns the id of the first node with the given class type.
func (w workflow) findNode(classType string) (string, bool) {
	for id, node := range w {
		if node.ClassType == classType {
			return id, true
		}
	}
	return "", false
}

// setInputImage points the graph's LoadImage node at the uploaded file.
func (w workflow) setInputImage(path string) error {
	id, ok := w.findNode("LoadImage")
	if !ok {
		return fmt.Errorf("%w: workflow has no LoadImage node", ErrProtocol)
	}
	w[id].Inputs["image"] = path
	return nil
}
