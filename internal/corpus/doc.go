// Package corpus persists raw and annotated prompts in the training-data
// format ({prompt, entities, intent}), forwards new records to the training
// pipeline, and replays annotated records through the parser to measure how
// well the rule set agrees with human labels.
package corpus
