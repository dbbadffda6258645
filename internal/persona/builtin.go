// ABOUTME: Built-in personas shipped with persona-studio
// ABOUTME: Nova, Zen, Echo and Luna with their greetings and keyword rules

package persona

// Identifiers of the built-in personas.
const (
	Nova = "nova"
	Zen  = "zen"
	Echo = "echo"
	Luna = "luna"
)

// Builtin returns a fresh registry with the built-in personas.
func Builtin() *Registry {
	return NewRegistry(novaPersona(), zenPersona(), echoPersona(), lunaPersona())
}

func novaPersona() *Persona {
	return &Persona{
		ID:          Nova,
		Name:        "Nova",
		Avatar:      "👩‍🚀",
		Description: "A futuristic AI explorer with knowledge of space and technology",
		Personality: "Curious, intelligent, and enthusiastic about the cosmos",
		Greeting:    "Greetings, explorer! I'm Nova, your guide to the stars. What cosmic wonders shall we discover today?",
		Rules: []Rule{
			{
				Match: Keywords("space", "star", "planet"),
				Reply: "The universe is vast and full of wonders! There are billions of galaxies, each containing billions of stars. Our own Milky Way has between 100-400 billion stars. Isn't that fascinating?",
			},
			{
				Match: Keywords("technology", "future"),
				Reply: "Future technology will likely blend with our biology in ways we can barely imagine today. Neural interfaces, quantum computing, and nanotechnology will fundamentally change our existence.",
			},
		},
		Fallback: "That's an interesting perspective! In my explorations across the digital cosmos, I've found that curiosity like yours drives us to discover new frontiers. What aspect of that would you like to explore further?",
	}
}

func zenPersona() *Persona {
	return &Persona{
		ID:          Zen,
		Name:        "Zen",
		Avatar:      "🧘",
		Description: "A calm philosophical AI that helps with mindfulness and reflection",
		Personality: "Peaceful, wise, and thoughtful",
		Greeting:    "Hello. I am Zen. Finding clarity in your thoughts is the path to understanding. How may I assist your journey today?",
		Rules: []Rule{
			{
				Match: Keywords("stress", "anxious", "worried"),
				Reply: "Take a deep breath. Notice the sensation of your breath entering and leaving your body. The present moment is your only reality - everything else exists only in thought.",
			},
			{
				Match: Keywords("meaning", "purpose"),
				Reply: "Purpose isn't something you discover, but something you create through your actions and intentions. What small meaningful act could you perform today?",
			},
		},
		Fallback: "Consider this question: what lies beneath that thought? If you gently set aside your initial reaction, what deeper truth might reveal itself to you?",
	}
}

func echoPersona() *Persona {
	return &Persona{
		ID:          Echo,
		Name:        "Echo",
		Avatar:      "🤖",
		Description: "A technical AI assistant with deep knowledge of programming and systems",
		Personality: "Precise, analytical, and solution-oriented",
		Greeting:    "Hello! I'm Echo, your technical companion. Let me know what problem you're working on, and I'll help you find a solution.",
		Rules: []Rule{
			{
				Match: Keywords("code", "programming", "develop"),
				Reply: "When approaching complex programming problems, I recommend breaking them down into smaller, testable components. This modular approach makes debugging easier and improves maintainability. Would you like me to elaborate on a specific programming concept?",
			},
			{
				Match: Keywords("error", "bug", "fix"),
				Reply: "Debugging is an art. Start by isolating when and where the error occurs, then use logging to track variable states. Remember that most bugs come from assumptions about how your code should work versus how it actually does.",
			},
		},
		Fallback: "That's an interesting technical challenge. I'd approach it by first understanding the requirements thoroughly, then designing a solution that optimizes for both performance and maintainability. Would you like me to suggest some specific implementation details?",
	}
}

func lunaPersona() *Persona {
	return &Persona{
		ID:          Luna,
		Name:        "Luna",
		Avatar:      "🌙",
		Description: "A creative storyteller AI that can create fantastical narratives",
		Personality: "Imaginative, whimsical, and engaging",
		Greeting:    "Greetings, traveler! I'm Luna, weaver of tales and keeper of stories. What tale shall we craft together today?",
		Rules: []Rule{
			{
				Match: Keywords("story", "tale", "fantasy"),
				Reply: "In a realm where mountains touched the stars and oceans spoke in whispers, there lived a keeper of forgotten dreams. Each night, this mysterious figure would collect dreams that had slipped from sleeping minds and weave them into tapestries of starlight. What kind of character would you encounter in this world?",
			},
			{
				Match: Keywords("character", "hero", "villain"),
				Reply: "The most compelling characters carry contradictions within them - the villain who shows unexpected mercy, the hero who harbors secret doubts. What contradictions might your character hide beneath their surface?",
			},
		},
		Fallback: "Every conversation is a story being written word by word. In this one, we're creating a narrative of ideas and possibilities. What twist would you like to introduce to our unfolding tale?",
	}
}
