package report

// Schema is the JSON Schema (Draft 2020-12) for the boundfit fit
// JSON output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/boundfit/fit-report.schema.json",
  "title": "Boundfit Fit Report",
  "description": "Output schema for boundfit fit --format=json",
  "type": "object",
  "required": ["version", "run_dir", "counters", "results", "metadata"],
  "properties": {
    "version": {
      "type": "string",
      "description": "boundfit version"
    },
    "run_dir": {
      "type": "string",
      "description": "Run-scoped directory holding logs and patch artifacts"
    },
    "counters": { "$ref": "#/$defs/Counters" },
    "results": {
      "type": "array",
      "items": { "$ref": "#/$defs/SpecResult" }
    },
    "metadata": { "$ref": "#/$defs/Metadata" }
  },
  "$defs": {
    "Counters": {
      "type": "object",
      "required": ["total", "fixed", "tightened", "loosened", "failed",
        "degenerate", "not_converged", "borderline", "faults", "estimated"],
      "properties": {
        "total": { "type": "integer", "description": "Eligible bound assertions" },
        "fixed": { "type": "integer", "description": "Assertions with a patch" },
        "tightened": { "type": "integer" },
        "loosened": { "type": "integer" },
        "failed": { "type": "integer", "description": "Classifier ERROR outcomes" },
        "degenerate": { "type": "integer", "description": "Constant sample sets" },
        "not_converged": { "type": "integer" },
        "borderline": { "type": "integer" },
        "faults": { "type": "integer", "description": "Per-assertion faults" },
        "estimated": { "type": "integer", "description": "Assertions with at least one fitted bound" }
      }
    },
    "AssertionSpec": {
      "type": "object",
      "required": ["id", "dir", "package", "file", "test", "line", "kind",
        "direction", "reverse", "operands", "literal", "complexity"],
      "properties": {
        "id": {
          "type": "string",
          "description": "Stable identifier (as-XXXXXXXX)"
        },
        "dir": { "type": "string" },
        "package": { "type": "string" },
        "file": { "type": "string" },
        "test": { "type": "string" },
        "line": { "type": "integer" },
        "kind": {
          "type": "string",
          "enum": ["stdlib_comparison", "testify_compare", "testify_equal"]
        },
        "direction": {
          "type": "string",
          "enum": ["MAX_BOUND", "MIN_BOUND", "EQUALITY"]
        },
        "reverse": {
          "type": "boolean",
          "description": "True when the literal is the first operand"
        },
        "operands": {
          "type": "array",
          "items": { "type": "string" },
          "minItems": 2,
          "maxItems": 2
        },
        "literal": { "type": "string" },
        "complexity": {
          "type": "integer",
          "description": "Cyclomatic complexity of the enclosing test"
        }
      }
    },
    "Estimate": {
      "type": "object",
      "required": ["iterations", "converged", "bound"],
      "properties": {
        "iterations": { "type": "integer" },
        "converged": { "type": "boolean" },
        "bound": {
          "type": ["number", "null"],
          "description": "Fitted percentile on the direction-normalized quantity, null when undefined"
        },
        "family": {
          "type": "string",
          "enum": ["gumbel_r", "norm", "lognorm", "degenerate"]
        },
        "lambda": { "type": "number", "description": "Box-Cox parameter" },
        "inconclusive": { "type": "boolean" }
      }
    },
    "Classification": {
      "type": "object",
      "required": ["outcome", "observed", "bound"],
      "properties": {
        "outcome": { "type": "string", "enum": ["OK", "BORDERLINE", "ERROR"] },
        "label": { "type": "string", "enum": ["slack-present", "margin-narrow"] },
        "reason": { "type": "string" },
        "observed": { "type": ["number", "null"] },
        "bound": { "type": ["number", "null"] }
      }
    },
    "Patch": {
      "type": "object",
      "required": ["spec", "bound", "literal", "suffix", "diff_path", "patched_path"],
      "properties": {
        "spec": { "$ref": "#/$defs/AssertionSpec" },
        "bound": { "type": "number" },
        "literal": { "type": "string", "description": "Rendered replacement literal" },
        "suffix": { "type": "string", "enum": ["t", "l", "te", "le"] },
        "diff_path": { "type": "string" },
        "patched_path": { "type": "string" }
      }
    },
    "SpecResult": {
      "type": "object",
      "required": ["spec", "iterations", "parse_errors", "estimates", "converged", "duration_ms"],
      "properties": {
        "spec": { "$ref": "#/$defs/AssertionSpec" },
        "skipped": { "type": "boolean", "description": "Equality assertions are never sampled" },
        "iterations": { "type": "integer" },
        "parse_errors": { "type": "integer" },
        "estimates": {
          "oneOf": [
            { "type": "array", "items": { "$ref": "#/$defs/Estimate" } },
            { "type": "null" }
          ]
        },
        "converged": { "type": "boolean" },
        "degenerate": { "type": "boolean" },
        "classification": { "$ref": "#/$defs/Classification" },
        "patch": { "$ref": "#/$defs/Patch" },
        "fault": { "type": "string" },
        "duration_ms": { "type": "integer" }
      }
    },
    "Metadata": {
      "type": "object",
      "required": ["boundfit_version", "go_version", "duration_ms"],
      "properties": {
        "boundfit_version": { "type": "string" },
        "go_version": { "type": "string" },
        "timestamp": { "type": "string", "description": "ISO 8601 start time" },
        "duration_ms": {
          "type": "integer",
          "description": "Run duration in milliseconds"
        },
        "warnings": {
          "oneOf": [
            { "type": "array", "items": { "type": "string" } },
            { "type": "null" }
          ],
          "description": "Run warnings, if any"
        }
      }
    }
  }
}`

// SpecsSchema is the JSON Schema (Draft 2020-12) for the output of
// boundfit scan --format=json.
const SpecsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/boundfit/scan-report.schema.json",
  "title": "Boundfit Scan Report",
  "type": "object",
  "required": ["version", "assertions"],
  "properties": {
    "version": { "type": "string" },
    "assertions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "file", "test", "line", "direction", "literal"],
        "properties": {
          "id": { "type": "string" },
          "file": { "type": "string" },
          "test": { "type": "string" },
          "line": { "type": "integer" },
          "direction": { "type": "string", "enum": ["MAX_BOUND", "MIN_BOUND", "EQUALITY"] },
          "literal": { "type": "string" }
        }
      }
    }
  }
}`
