package prompt

import "github.com/MrWong99/hearscribe/internal/locale"

type builtin struct {
	noneMarker    string
	placeholder   string
	participants  string
	transcription string
	anonymize     string
	correct       string
}

var builtins = map[locale.Language]builtin{
	locale.Italian: {
		noneMarker:  "Nessuna",
		placeholder: "[IMPORTO]",
		participants: `Analizza il verbale d'udienza allegato.
Estrai il nome completo e il ruolo di ogni partecipante menzionato (giudice, pubblico ministero, parti, avvocati, testimoni, consulenti, cancelliere, ecc.).
Restituisci un elenco chiaro nel formato "Nome Cognome – Ruolo", un partecipante per riga.`,
		transcription: `Trascrivi il video allegato di un'udienza in modo esatto e letterale, riga per riga.
Non dedurre, riassumere o completare parti non udibili.

Ogni riga deve avere il formato:
Nome Cognome – Ruolo – testo dell'intervento

Elenco ufficiale dei partecipanti (usalo per identificare chi parla):
{{.Participants}}

Se non puoi attribuire con certezza un intervento a uno dei partecipanti, usa "Persona Non Identificata X" come nome, dove X è un numero progressivo coerente per tutta la trascrizione.

Informazioni aggiuntive: {{.Notes}}`,
		anonymize: `Anonimizza il testo seguente.
Sostituisci ogni nome di persona o di società e ogni indirizzo con le sole iniziali.
Sostituisci ogni importo di denaro con "{{.Placeholder}}".
Non modificare nient'altro e restituisci solo il testo anonimizzato.

Testo:
{{.Transcript}}`,
		correct: `Applica la seguente correzione al testo.
Correzione: {{.Correction}}

Restituisci solo il testo completo corretto, senza commenti aggiuntivi.

Testo:
{{.Transcript}}`,
	},
	locale.English: {
		noneMarker:  "None",
		placeholder: "[AMOUNT]",
		participants: `Analyze the attached hearing minutes.
Extract the full name and role of every participant mentioned (judge, prosecutor, parties, lawyers, witnesses, experts, clerk, etc.).
Return a clear list in the form "Full Name – Role", one participant per line.`,
		transcription: `Transcribe the attached hearing video exactly and literally, line by line.
Do not infer, summarize or fill in inaudible passages.

Every line must use the format:
Full Name – Role – utterance text

Authoritative list of participants (use it to identify speakers):
{{.Participants}}

If you cannot confidently attribute an utterance to one of the participants, use "Unidentified Person X" as the name, where X is a number kept consistent across the whole transcript.

Additional information: {{.Notes}}`,
		anonymize: `Anonymize the following text.
Replace every person or company name and every address with initials only.
Replace every monetary amount with "{{.Placeholder}}".
Change nothing else and return only the anonymized text.

Text:
{{.Transcript}}`,
		correct: `Apply the following correction to the text.
Correction: {{.Correction}}

Return only the full corrected text, with no additional commentary.

Text:
{{.Transcript}}`,
	},
}
