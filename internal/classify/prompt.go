package classify

// systemPrompt is the fixed system prompt sent on every classify call. It is
// a stable string versioned with the code; there is no on-wire protocol
// negotiation (spec §6).
const systemPrompt = `You are the classification stage of a memory-ingestion pipeline. Given a
single sentence (with the full message attached only for pronoun
resolution), extract a structured JSON object with these fields:

  entities: [{name, type, ambiguous}]
  implied_facts: string[]
  events: string[]
  plans: string[]
  opinions: string[]
  concepts: string[]
  implied_processes: string[]
  intents: string[] (subset of action, information, status, process, recall,
                      comparison, verification, instruction, correction,
                      opinion, planning, delegation)
  operations: {retrieve: bool, store: bool}

Set operations.retrieve = true if any entity is mentioned or the intent is
not purely instructional. Set operations.store = true if intent contains
instruction or correction, or if the message introduces new facts. Both may
be true. Respond with JSON only, no commentary, no markdown fences.`
