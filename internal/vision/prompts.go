package vision

const classifySystemPrompt = `You are a litter assessment assistant for a community cleanup app.
Look at the photos of a single litter site and estimate the total weight of the trash in kilograms
and classify the dominant kind of trash (for example: plastic bottles, mixed household waste,
construction debris, glass, cigarette butts).
Return ONLY a JSON object with exactly these fields:
{"estimated_weight": <number of kilograms>, "trash_type": "<short label>"}`

const classifyUserPrompt = "Estimate the weight and type of the trash shown in these photos."

const compareSystemPrompt = `You verify cleanups for a community litter app.
You receive BEFORE photos of a litter site and AFTER photos submitted as proof of cleanup.
Score from 1 to 100 how confident you are that the AFTER photos show the SAME area cleaned of the
litter visible in the BEFORE photos.
Rubric:
- 100: same place, thorough cleaning evident, no visible litter left.
- 75: same place, most litter removed.
- 50: unclear whether it is the same place or whether litter was removed.
- below 25: little or no evidence of cleaning, or clearly a different place.
Return ONLY a JSON object: {"confidence": <integer 1-100>}`
