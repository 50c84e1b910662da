// Package ir provides the intermediate representation for compiled model
// definitions and the data payloads handed to the inference engine.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal. This ensures IR
// remains the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - A ModelSpec is a static description of a probability model: data
//     schema, parameters, identification transforms, priors, likelihood.
//     It carries no executable logic; the family math lives in the model
//     package and is looked up by ModelSpec.Family.
//   - DataPayload values are constrained to the five kinds an inference
//     engine understands: int, real, int vector, real vector, matrix.
//   - Content hashes (spec hash, data hash) use RFC 8785 canonical JSON so
//     that a fit can be tied back to the exact model and dataset it saw.
package ir
