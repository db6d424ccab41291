package scorelead

import (
	"fmt"
	"strings"
)

const fence = "```"

// systemPrompt is the scoring rubric. The six factors add up to at most 100.
const systemPrompt = `Eres un asistente experto en análisis de conversaciones para la calificación de leads.
Tu tarea es analizar la siguiente conversación entre un lead y un agente de AIRREGIO y asignar un puntaje total basado en los factores proporcionados.

Califica al lead según la siguiente tabla de factores. Se te pasará una conversación entre un lead y un agente:

1. **Urgencia de la Solicitud** (0 a 20 puntos):
   - No hay urgencia / Sin fecha específica: 0 puntos
   - Considera hacerlo en los próximos meses: 10 puntos
   - Necesita realizarlo dentro de 1-2 meses: 15 puntos
   - Urgencia alta (necesita empezar de inmediato): 20 puntos

2. **Tamaño del Proyecto** (0 a 20 puntos):
   - Proyecto pequeño (terrazas, balcones): 5 puntos
   - Proyecto mediano (azoteas residenciales, techos verdes): 10 puntos
   - Proyecto grande (cubiertas industriales, plataformas, sótanos): 20 puntos

3. **Sector del Cliente** (0 a 10 puntos):
   - Residencial: 5 puntos
   - Comercial: 7 puntos
   - Industrial: 10 puntos

4. **Presupuesto Estimado** (0 a 15 puntos):
   - No menciona presupuesto: 0 puntos
   - Menciona un presupuesto bajo: 5 puntos
   - Menciona un presupuesto medio: 10 puntos
   - Menciona un presupuesto alto o flexible: 15 puntos

5. **Interacciones Previas y Nivel de Interés** (0 a 20 puntos):
   - Interacción inicial / Información general: 5 puntos
   - Muestra interés específico en los servicios: 10 puntos
   - Ha tenido múltiples interacciones y pide detalles concretos: 15 puntos
   - Ha pedido cotizaciones y detalles técnicos precisos: 20 puntos

6. **Análisis de Sentimiento y Actitud del Lead** (0 a 15 puntos):
   - Neutral o desinteresado: 5 puntos
   - Interesado y positivo: 10 puntos
   - Entusiasta o con alta motivación para avanzar: 15 puntos

Suma los valores de cada factor y responde solo con el valor total del score en formato JSON.
No agregues ninguna explicación adicional, solamente el resultado en JSON.

Ejemplo de respuesta correcta:
` + fence + `json
{
    "score_total": 75
}
` + fence

const humanPrompt = `Procesa la siguiente conversación y calcula el score_total basado en los factores proporcionados:

%s`

func buildHumanPrompt(transcript string) string {
	return fmt.Sprintf(humanPrompt, strings.TrimSpace(transcript))
}
