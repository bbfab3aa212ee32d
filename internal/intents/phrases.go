package intents

// Spoken phrases. The assistant answers in Hinglish.
const (
	PhraseNotUnderstood = "Ye command mujhe samajh nahi aayi. Dobara karke dekho."

	phraseYouTubeSearch  = "YouTube pe search kar raha hoon "
	phraseWeatherAck     = "Mausam dekh raha hoon..."
	phraseWeatherFailed  = "Mausam laane me dikkat hai."
	phraseTimePrefix     = "Abhi ka samay hai "
	phraseNewsAck        = "Taaza khabrein la raha hoon..."
	phraseNewsFailed     = "News lana mushkil hai."
	phraseWikiAsk        = "Kya jankari chahiye?"
	phraseWikiAck        = "Wikipedia se dekhta hoon "
	phraseWikiNoSummary  = "Koi short summary nahi mila."
	phraseWikiFailed     = "Wikipedia laane me dikkat hai."
	phraseExit           = "Ynot AI band ho raha hai. Namaste!"
	defaultYouTubeQuery  = "music"
	youTubeSearchBaseURL = "https://www.youtube.com/results?search_query="
	clockLayout          = "3:04:05 PM"
)

// Jokes is the fixed joke set.
var Jokes = []string{
	"Ek aadmi doctor ke paas gaya, bola meri biwi bahut zyada baat karti hai.",
	"Teacher ne pucha: agar tumhare paas 10 aam hain aur tum 4 kha lete ho, toh kitne bache? Student: 10, maam, main nahi khaunga.",
	"Pati bola: tum itni khubsurat kaise lag rahi ho? Patni boli: makeup ka kamaal.",
}
