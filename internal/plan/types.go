// Package plan defines the structured implementation plan produced by the
// generator, decodes it tolerantly from untrusted JSON, and renders it as a
// plain-text checklist.
package plan

import "encoding/json"

// Step phases suggested to the generator. Free text is tolerated.
const (
	PhaseSetup       = "setup"
	PhaseFoundation  = "foundation"
	PhaseCore        = "core"
	PhaseFeatures    = "features"
	PhaseIntegration = "integration"
	PhaseTesting     = "testing"
	PhaseDeployment  = "deployment"
)

// DetailedPlan is the structured plan extracted from generator output.
type DetailedPlan struct {
	Overview            string                  `json:"overview"`
	Architecture        []ArchitecturalDecision `json:"architecture"`
	ImplementationSteps []ImplementationStep    `json:"implementation_steps"`
	// FileStructure is an arbitrarily nested mapping kept verbatim so its
	// key order survives persistence.
	FileStructure   json.RawMessage `json:"file_structure"`
	Dependencies    []Dependency    `json:"dependencies"`
	TestingStrategy string          `json:"testing_strategy"`
	DeploymentNotes string          `json:"deployment_notes"`

	DataModels   []DataModel       `json:"data_models,omitempty"`
	Routes       []RouteSpec       `json:"routes,omitempty"`
	Components   []ComponentSpec   `json:"components,omitempty"`
	ContentTypes []ContentTypeSpec `json:"content_types,omitempty"`
}

// ArchitecturalDecision describes one component of the proposed system.
type ArchitecturalDecision struct {
	Component    string   `json:"component"`
	Purpose      string   `json:"purpose"`
	Technologies []string `json:"technologies"`
	Interfaces   []string `json:"interfaces"`
	Dependencies []string `json:"dependencies"`
}

// ImplementationStep is one unit of work. Dependencies name other step ids.
type ImplementationStep struct {
	ID                  string   `json:"id"`
	Phase               string   `json:"phase"`
	Description         string   `json:"description"`
	FilesToCreate       []string `json:"files_to_create"`
	FilesToModify       []string `json:"files_to_modify"`
	Dependencies        []string `json:"dependencies"`
	EstimatedComplexity string   `json:"estimated_complexity"`
	EstimatedTime       string   `json:"estimated_time,omitempty"`
	ValidationCriteria  []string `json:"validation_criteria"`
	PotentialIssues     []string `json:"potential_issues,omitempty"`
}

// Dependency is a package the plan relies on.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Purpose string `json:"purpose"`
	Type    string `json:"type,omitempty"`
}

// Risk is a potential problem with its mitigation.
type Risk struct {
	Risk        string `json:"risk"`
	Probability string `json:"probability"`
	Impact      string `json:"impact"`
	Mitigation  string `json:"mitigation"`
}

type DataModelField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

type DataModel struct {
	Name   string           `json:"name"`
	Fields []DataModelField `json:"fields"`
}

type RouteParam struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

type RouteSpec struct {
	Path        string       `json:"path"`
	Method      string       `json:"method,omitempty"`
	Description string       `json:"description,omitempty"`
	Params      []RouteParam `json:"params,omitempty"`
}

type ComponentSpec struct {
	Name             string   `json:"name"`
	Category         string   `json:"category,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

type ContentTypeField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

type ContentTypeSpec struct {
	Name   string             `json:"name"`
	Fields []ContentTypeField `json:"fields"`
}

// Extras are the non-plan fields the generator returns alongside the plan.
type Extras struct {
	Reasoning    string
	Alternatives []string
	Risks        []Risk
}

// emptyObject is the default file structure.
var emptyObject = json.RawMessage(`{}`)
