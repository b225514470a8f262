package agent

// Schemas for every agent output type, compiled via ValidateJSON before an
// LLM-backed implementation unmarshals a model's response into its typed
// Go output. Kept permissive (additionalProperties allowed) since model
// providers frequently add fields; the contract only enforces the presence
// and type of what the engine actually reads.

var IntentAnalysisSchema = []byte(`{
	"type": "object",
	"required": ["roadmap_id_candidate", "key_technologies", "difficulty_profile"],
	"properties": {
		"roadmap_id_candidate": {"type": "string", "minLength": 1},
		"key_technologies": {"type": "array", "items": {"type": "string"}},
		"difficulty_profile": {"type": "string"},
		"time_constraints": {"type": "string"},
		"skill_gaps": {"type": "array", "items": {"type": "string"}},
		"language_preference": {"type": "string"},
		"recommended_focus": {"type": "string"}
	}
}`)

var FrameworkSchema = []byte(`{
	"type": "object",
	"required": ["roadmap_id", "stages"],
	"properties": {
		"roadmap_id": {"type": "string"},
		"title": {"type": "string"},
		"stages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["stage_id", "modules"],
				"properties": {
					"stage_id": {"type": "string"},
					"name": {"type": "string"},
					"description": {"type": "string"},
					"modules": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["module_id", "concepts"],
							"properties": {
								"module_id": {"type": "string"},
								"name": {"type": "string"},
								"description": {"type": "string"},
								"concepts": {
									"type": "array",
									"items": {
										"type": "object",
										"required": ["concept_id", "name"],
										"properties": {
											"concept_id": {"type": "string"},
											"name": {"type": "string"},
											"description": {"type": "string"},
											"estimated_hours": {"type": "number"},
											"prerequisites": {"type": "array", "items": {"type": "string"}},
											"difficulty": {"type": "string"},
											"keywords": {"type": "array", "items": {"type": "string"}}
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`)

var ValidationOutputSchema = []byte(`{
	"type": "object",
	"required": ["is_valid", "overall_score", "issues", "dimension_scores"],
	"properties": {
		"is_valid": {"type": "boolean"},
		"overall_score": {"type": "number"},
		"issues": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["severity", "category", "location", "description"],
				"properties": {
					"severity": {"type": "string", "enum": ["critical", "warning"]},
					"category": {"type": "string"},
					"location": {"type": "string"},
					"description": {"type": "string"},
					"affected_concepts": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"dimension_scores": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["dimension", "score", "weight"],
				"properties": {
					"dimension": {"type": "string"},
					"score": {"type": "number"},
					"weight": {"type": "number"}
				}
			}
		},
		"improvement_suggestions": {"type": "array", "items": {"type": "string"}},
		"validation_summary": {"type": "string"}
	}
}`)

var EditPlanSchema = []byte(`{
	"type": "object",
	"required": ["feedback_summary", "scope_analysis", "intents"],
	"properties": {
		"feedback_summary": {"type": "string"},
		"scope_analysis": {"type": "string"},
		"preservation_requirements": {"type": "array", "items": {"type": "string"}},
		"needs_clarification": {"type": "boolean"},
		"intents": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["intent_type", "target_path", "description", "priority"],
				"properties": {
					"intent_type": {"type": "string", "enum": ["add", "remove", "modify", "reorder", "split", "merge"]},
					"target_path": {"type": "string"},
					"description": {"type": "string"},
					"priority": {"type": "string", "enum": ["must", "should", "could"]}
				}
			}
		}
	}
}`)

var TutorialOutputSchema = []byte(`{
	"type": "object",
	"required": ["title", "body"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"summary": {"type": "string"},
		"body": {"type": "string", "minLength": 1},
		"estimated_time_minutes": {"type": "number"}
	}
}`)

var ResourceListSchema = []byte(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["title", "url", "type"],
		"properties": {
			"title": {"type": "string"},
			"url": {"type": "string"},
			"type": {"type": "string", "enum": ["article", "video", "docs", "course"]}
		}
	}
}`)

var QuizQuestionListSchema = []byte(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["prompt", "choices", "correct_choice"],
		"properties": {
			"prompt": {"type": "string"},
			"choices": {"type": "array", "items": {"type": "string"}, "minItems": 2},
			"correct_choice": {"type": "integer", "minimum": 0},
			"explanation": {"type": "string"}
		}
	}
}`)
